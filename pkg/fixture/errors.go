package fixture

import "errors"

// Mocktail errors
var (
	ErrPathNotExist   = errors.New("mocktail path does not exist")
	ErrPathNotDir     = errors.New("mocktail path is not a directory")
	ErrPathUnreadable = errors.New("mocktail directory is not readable")
	ErrFileNotExist   = errors.New("mocktail file does not exist")
	ErrFileUnreadable = errors.New("mocktail file is not readable")
	ErrFormatInvalid  = errors.New("mocktail file format is invalid")
	ErrHeaderInvalid  = errors.New("mocktail header is invalid")
)

// Stub file errors
var (
	ErrReadStubFile   = errors.New("read stub file")
	ErrDecodeStubFile = errors.New("decode stub file")
	ErrBuildStub      = errors.New("build stub")
	ErrUnknownFormat  = errors.New("unknown fixture format")
)
