package commission_test

import (
	"errors"
	"sync"
	"testing"
	"unicode"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/commission-engine/commission"
)

// =============================================================================
// SESSION
// =============================================================================

func TestSession_StageAndRemove(t *testing.T) {
	s := commission.NewSession(date("2025-02-15"), jan1)
	require.NotEmpty(t, s.ID)

	assert.Equal(t, 0, s.Add(lineFor("NEW", "1", "1")))
	assert.Equal(t, 1, s.Add(lineFor("END", "2", "2")))
	assert.Equal(t, 2, s.Add(lineFor("CAN", "3", "3")))

	require.NoError(t, s.Remove(1))
	lines := s.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, commission.TxNew, lines[0].TransactionType)
	assert.Equal(t, commission.TxCancel, lines[1].TransactionType)

	err := s.Remove(5)
	assert.True(t, errors.Is(err, commission.ErrLineIndexOutOfRange))
	assert.True(t, errors.Is(s.Remove(-1), commission.ErrLineIndexOutOfRange))

	s.Clear()
	assert.Equal(t, 0, s.Len())
}

func TestSession_BatchFillsStatementDate(t *testing.T) {
	s := commission.NewSession(date("2025-03-31"), jan1)
	undated := lineFor("END", "1", "1")
	undated.StatementDate = commission.Date{}
	s.Add(undated)
	s.Add(lineFor("END", "1", "1"))

	batch := s.Batch()

	assert.Equal(t, "2025-03-31", batch[0].StatementDate.String())
	assert.Equal(t, "2025-02-15", batch[1].StatementDate.String())

	// staged lines are not rewritten
	assert.True(t, s.Lines()[0].StatementDate.IsZero())
}

func TestSession_ConcurrentAdds(t *testing.T) {
	s := commission.NewSession(commission.Date{}, jan1)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Add(lineFor("END", "1", "1"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, s.Len())
}

func TestSessions_AreIndependent(t *testing.T) {
	a := commission.NewSession(commission.Date{}, jan1)
	b := commission.NewSession(commission.Date{}, jan1)

	a.Add(lineFor("END", "1", "1"))

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, 1, a.Len())
	assert.Equal(t, 0, b.Len())
}

// =============================================================================
// ID GENERATOR
// =============================================================================

func TestCodeGenerator_Shape(t *testing.T) {
	gen := commission.NewCodeGenerator()

	for i := 0; i < 200; i++ {
		id, err := gen.NewID()
		require.NoError(t, err)
		require.Len(t, id, 7)

		letters, digits := 0, 0
		for _, r := range id {
			switch {
			case unicode.IsUpper(r):
				letters++
			case unicode.IsDigit(r):
				digits++
			default:
				t.Fatalf("unexpected character %q in %s", r, id)
			}
		}
		assert.GreaterOrEqual(t, letters, 2, id)
		assert.GreaterOrEqual(t, digits, 2, id)
	}
}

func TestCodeGenerator_InvalidConfig(t *testing.T) {
	gen := &commission.CodeGenerator{Length: 3, MinLetters: 2, MinDigits: 2}

	_, err := gen.NewID()
	assert.Error(t, err)
}
