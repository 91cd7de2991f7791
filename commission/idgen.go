package commission

import (
	"crypto/rand"
	"math/big"

	"github.com/rotisserie/eris"
)

// IDGenerator produces transaction and client ids. Callers rely on the
// store, not the generator, for uniqueness.
type IDGenerator interface {
	NewID() (string, error)
}

const (
	idLetters = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idDigits  = "0123456789"
	idAlpha   = idLetters + idDigits
)

// CodeGenerator makes fixed-length upper-case alphanumeric codes with a
// guaranteed minimum number of letters and digits.
type CodeGenerator struct {
	Length     int
	MinLetters int
	MinDigits  int
}

// NewCodeGenerator returns the default 7-character generator.
func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{Length: 7, MinLetters: 2, MinDigits: 2}
}

func (g *CodeGenerator) NewID() (string, error) {
	if g.Length <= 0 || g.MinLetters+g.MinDigits > g.Length {
		return "", eris.Errorf("idgen: length %d cannot hold %d letters and %d digits",
			g.Length, g.MinLetters, g.MinDigits)
	}

	code := make([]byte, 0, g.Length)
	for i := 0; i < g.MinLetters; i++ {
		c, err := pick(idLetters)
		if err != nil {
			return "", err
		}
		code = append(code, c)
	}
	for i := 0; i < g.MinDigits; i++ {
		c, err := pick(idDigits)
		if err != nil {
			return "", err
		}
		code = append(code, c)
	}
	for len(code) < g.Length {
		c, err := pick(idAlpha)
		if err != nil {
			return "", err
		}
		code = append(code, c)
	}

	// Fisher-Yates so the guaranteed characters aren't always up front
	for i := len(code) - 1; i > 0; i-- {
		j, err := rand.Int(rand.Reader, big.NewInt(int64(i+1)))
		if err != nil {
			return "", eris.Wrap(err, "idgen: shuffle")
		}
		code[i], code[j.Int64()] = code[j.Int64()], code[i]
	}
	return string(code), nil
}

func pick(alphabet string) (byte, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
	if err != nil {
		return 0, eris.Wrap(err, "idgen: read random")
	}
	return alphabet[n.Int64()], nil
}
