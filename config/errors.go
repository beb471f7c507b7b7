package config

import "errors"

// Sentinel errors for tree construction, overrides and evaluation.
var (
	ErrNotCallable          = errors.New("constructor is not registered")
	ErrArgsWithoutFunc      = errors.New("positional args require a constructor")
	ErrAlreadyExists        = errors.New("constructor already registered")
	ErrEmptyName            = errors.New("constructor name is empty")
	ErrNotANode             = errors.New("path element is not a config node")
	ErrInvalidPath          = errors.New("invalid config path")
	ErrUnrecognizedArgument = errors.New("unrecognized argument")
	ErrMissingValue         = errors.New("missing value for argument")
	ErrInvalidFile          = errors.New("invalid config file")
	ErrDecode               = errors.New("cannot decode config values")
)
