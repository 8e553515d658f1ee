package core

import (
	"io"
	"time"

	"go.uber.org/zap"
)

// AttachHornet exposes newHornet to the external test package.
func AttachHornet(mem []byte, resp io.Reader, req io.Writer, timeout time.Duration, log *zap.Logger) *Hornet {
	return newHornet(mem, resp, req, timeout, log)
}
