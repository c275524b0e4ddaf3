// Command httpd serves HTTP/1.1 on 127.0.0.1:4221 until it is killed.
package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/nczempin/httpd-go-uring/server"
)

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().
		Timestamp().
		Logger()

	srv := server.New(server.DefaultConfig(), logger)
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
