package logs

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNewLevels(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New("debug", "text").GetLevel())
	assert.Equal(t, logrus.WarnLevel, New("warn", "text").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("bogus", "text").GetLevel())
}

func TestMaskFields(t *testing.T) {
	in := map[string]interface{}{
		"email":    "a@x.com",
		"password": "hunter22",
		"nested": map[string]interface{}{
			"refresh_token": "raw-token",
			"note":          "keep me",
		},
		"items": []interface{}{
			map[string]interface{}{"api_key": "fsk_abc", "name": "ci"},
		},
	}

	out := MaskFields(in).(map[string]interface{})

	assert.Equal(t, "a@x.com", out["email"])
	assert.Equal(t, "***", out["password"])

	nested := out["nested"].(map[string]interface{})
	assert.Equal(t, "***", nested["refresh_token"])
	assert.Equal(t, "keep me", nested["note"])

	item := out["items"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "***", item["api_key"])
	assert.Equal(t, "ci", item["name"])
}

func TestMaskFieldsNonObject(t *testing.T) {
	// Scalars pass through untouched.
	assert.Equal(t, "plain", MaskFields("plain"))
	assert.Nil(t, MaskFields(nil))
}
