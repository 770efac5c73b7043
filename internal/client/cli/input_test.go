package cli

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrompter_LineKeepsSurroundingSpace(t *testing.T) {
	var out bytes.Buffer
	p := newPrompter(strings.NewReader(" TAX-0000ABCD \r\nTAX-0000ABCD"), &out)

	got, err := p.Line("Type TAX-0000ABCD to confirm deletion")
	require.NoError(t, err)
	require.Equal(t, " TAX-0000ABCD ", got)
	require.Equal(t, "Type TAX-0000ABCD to confirm deletion: ", out.String())

	got, err = p.Line("again")
	require.NoError(t, err)
	require.Equal(t, "TAX-0000ABCD", got)

	_, err = p.Line("empty")
	require.ErrorIs(t, err, io.EOF)
}

func TestPrompter_PasswordFromPipe(t *testing.T) {
	p := newPrompter(strings.NewReader(" pass word \n"), io.Discard)

	got, err := p.Password("Password")
	require.NoError(t, err)
	require.Equal(t, " pass word ", got)
}
