package transport

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/nczempin/httpd-go-uring/errors"
)

// ListenUnix listens on a Unix domain socket at path. A socket file left
// behind by an earlier run is removed first; any other file at path is an
// error.
func ListenUnix(path string, backend Backend) (Listener, error) {
	info, err := os.Lstat(path)
	switch {
	case err == nil && info.Mode()&fs.ModeSocket != 0:
		if err := os.Remove(path); err != nil {
			return nil, errors.NewTransportError(
				errors.TransportErrorSocketCreateFailure,
				"failed to remove stale unix socket",
				err,
			)
		}
	case err == nil:
		return nil, errors.NewInvalidArgumentError(fmt.Sprintf("%s exists and is not a socket", path))
	case !stderrors.Is(err, fs.ErrNotExist):
		return nil, errors.NewTransportError(
			errors.TransportErrorSocketCreateFailure,
			"failed to stat unix socket path",
			err,
		)
	}

	return Listen("unix", path, backend)
}
