package engine

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidGridShape  = errors.New("invalid grid shape")
	ErrUnknownTileSymbol = errors.New("unknown tile symbol")
	ErrOutOfBounds       = errors.New("position out of bounds")
	ErrInvalidDirection  = errors.New("invalid direction")
)

// TileSymbolError reports an unrecognized character in a layout. Row and Col
// are 0-based indexes into the unpadded layout.
type TileSymbolError struct {
	Row    int
	Col    int
	Symbol rune
}

func (e *TileSymbolError) Error() string {
	return fmt.Sprintf("%v: %q at row %d, col %d", ErrUnknownTileSymbol, e.Symbol, e.Row+1, e.Col+1)
}

func (e *TileSymbolError) Unwrap() error {
	return ErrUnknownTileSymbol
}
