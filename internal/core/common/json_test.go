package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestParseJSONPlain(t *testing.T) {
	p, err := ParseJSON[payload](`{"name": "alice", "count": 2}`)
	assert.NoError(t, err)
	assert.Equal(t, payload{Name: "alice", Count: 2}, p)
}

func TestParseJSONWithSurroundingProse(t *testing.T) {
	resp := "Sure! Here is the JSON you asked for:\n```json\n{\"name\": \"bob\", \"count\": 7}\n```\nLet me know if you need anything else."
	p, err := ParseJSON[payload](resp)
	assert.NoError(t, err)
	assert.Equal(t, "bob", p.Name)
	assert.Equal(t, 7, p.Count)
}

func TestParseJSONNoObject(t *testing.T) {
	_, err := ParseJSON[payload]("I could not produce any output.")
	assert.Error(t, err)
}

func TestParseJSONMalformed(t *testing.T) {
	_, err := ParseJSON[payload](`{"name": "broken`)
	assert.Error(t, err)
}
