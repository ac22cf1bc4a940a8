package version

import (
	"bytes"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFprintVersion(t *testing.T) {
	var b bytes.Buffer
	FprintVersion(&b)
	assert.Equal(t, os.Args[0]+" "+Package+" "+Version+"\n", b.String())
}

func TestCmd(t *testing.T) {
	var b bytes.Buffer
	Cmd.SetOut(&b)
	defer Cmd.SetOut(nil)

	Cmd.Run(Cmd, nil)
	assert.Contains(t, b.String(), Version)
}
