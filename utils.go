package raop

import (
	"errors"
	"io"
	"net"

	"github.com/rs/zerolog"
)

// errorIsClosed reports whether err is (or wraps) the standard library's
// "use of closed network connection" sentinel, used throughout the
// endpoints to distinguish a deliberate shutdown from a real I/O failure.
func errorIsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}

// closeAndLog closes closer, logging any non-nil error at Error level
// instead of propagating it. Used in teardown paths where a close failure
// must not block the rest of the shutdown sequence.
func closeAndLog(log zerolog.Logger, closer io.Closer, msg string) {
	if err := closer.Close(); err != nil {
		log.Error().Err(err).Msg(msg)
	}
}
