// Package logging provides leveled logging for the spatialdata packages.
// Messages go to the standard logger unless a rotating log file is
// configured.
package logging

import (
	"log"

	"github.com/natefinch/lumberjack"
)

type Mode uint

const (
	DebugMode Mode = iota
	InfoMode
	WarningMode
	ErrorMode
	SilentMode
)

var mode = InfoMode

// SetMode sets the severity required for a message to be written.
// SetMode(WarningMode) keeps calls made through Warningf and Errorf.
// SilentMode turns logging off entirely.
func SetMode(m Mode) {
	mode = m
}

// Config holds the rotating-file settings, usually read from the TOML
// config of a command. A zero Config leaves output on the standard logger.
type Config struct {
	Logfile string `toml:"logfile"`
	MaxSize int    `toml:"max_log_size"` // megabytes
	MaxAge  int    `toml:"max_log_age"`  // days
}

// SetLogger routes package output to a rotating log file. No-op when no
// logfile is configured.
func (c *Config) SetLogger() {
	if c == nil || c.Logfile == "" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename: c.Logfile,
		MaxSize:  c.MaxSize,
		MaxAge:   c.MaxAge,
	})
}

func Debugf(format string, args ...interface{}) {
	if mode <= DebugMode {
		log.Printf(" DEBUG "+format, args...)
	}
}

func Infof(format string, args ...interface{}) {
	if mode <= InfoMode {
		log.Printf(" INFO "+format, args...)
	}
}

func Warningf(format string, args ...interface{}) {
	if mode <= WarningMode {
		log.Printf(" WARNING "+format, args...)
	}
}

func Errorf(format string, args ...interface{}) {
	if mode <= ErrorMode {
		log.Printf(" ERROR "+format, args...)
	}
}
