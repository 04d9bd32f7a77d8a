package utils_test

import (
	"testing"

	"github.com/effective-security/toolbridge/utils"
	"github.com/stretchr/testify/assert"
)

func Test_CleanJSON(t *testing.T) {
	t.Parallel()

	llmOutput := "\n```json\n\n{\"city\": \"Paris\", \"country\": \"France\"}\n\n```\n\n"
	clean := utils.CleanJSON([]byte(llmOutput))
	assert.Equal(t, "{\"city\": \"Paris\", \"country\": \"France\"}", string(clean))

	llmOutput = "Here you go:\n```json\n\n[{\"city\": \"Paris\", \"country\": \"France\"}]\n```\n\n"
	clean = utils.CleanJSON([]byte(llmOutput))
	assert.Equal(t, "[{\"city\": \"Paris\", \"country\": \"France\"}]", string(clean))

	assert.Equal(t, "no json", string(utils.CleanJSON([]byte("no json"))))
}

func Test_TrimBackticks(t *testing.T) {
	t.Parallel()

	expected := "{\"city\": \"Paris\", \"country\": \"France\"}"
	assert.Equal(t, expected, utils.TrimBackticks("\n```json\n\n{\"city\": \"Paris\", \"country\": \"France\"}\n\n```\n\n"))
	assert.Equal(t, expected, utils.TrimBackticks(expected))
	assert.Equal(t, expected, utils.TrimBackticks("\n```\n\n{\"city\": \"Paris\", \"country\": \"France\"}\n\n```\n\n"))
	assert.Equal(t, expected, utils.TrimBackticks("\n```{\"city\": \"Paris\", \"country\": \"France\"}\n\n```\n\n"))
}

func Test_Stringify(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", utils.Stringify(nil))
	assert.Equal(t, "text", utils.Stringify("text"))
	assert.Equal(t, "5", utils.Stringify(5))
	assert.Equal(t, "{\n  \"a\": 1\n}", utils.Stringify(map[string]int{"a": 1}))
}

func Test_Truncate(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "short", utils.Truncate("short", 10))
	assert.Equal(t, "abc...", utils.Truncate("abcdef", 3))
	assert.Equal(t, "ab...", utils.Truncate("abé", 3))
	assert.Equal(t, "any", utils.Truncate("any", 0))
}
