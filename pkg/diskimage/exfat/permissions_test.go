package exfat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModeFor_DefaultRules(t *testing.T) {
	rules := DefaultPermRules()

	assert.Equal(t, uint16(0xF00), ModeFor("System/sbin/init", rules))
	assert.Equal(t, uint16(0xF00), ModeFor("System/users/perm/admin", rules))
	assert.Equal(t, uint16(0xFFF), ModeFor("home/user/file.txt", rules))
	assert.Equal(t, uint16(0xFFF), ModeFor("System/sbinx/init", rules), "prefix match must respect path boundaries")
}
