package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactedURL(t *testing.T) {
	assert.Equal(t, "redis://:xxxxx@cache:6379/0", redactedURL("redis://:s3cret@cache:6379/0"))
	assert.Equal(t, "nats://localhost:4222", redactedURL("nats://localhost:4222"))
	assert.Equal(t, "<invalid url>", redactedURL("://bad"))
}
