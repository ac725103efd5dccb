package app

import (
	"os"

	"github.com/rufatasadov/sober-driver-backend/internal/logx"
)

// NewLogger returns a JSON logger on stdout at the given level.
func NewLogger(level string) (logx.Logger, error) {
	lvl, err := logx.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return logx.NewJSON(os.Stdout, lvl), nil
}
