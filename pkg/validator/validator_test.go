package validator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type generateRequest struct {
	Code *string `json:"code" validate:"required,code_length"`
}

type tuning struct {
	ChunkSize   int `validate:"chunk_size"`
	Concurrency int `validate:"concurrency"`
	MaxTokens   int `validate:"max_tokens"`
}

func strPtr(s string) *string { return &s }

func TestValidatorConfig(t *testing.T) {
	tests := []struct {
		name   string
		config *Config
	}{
		{name: "default config", config: DefaultConfig()},
		{name: "nil config", config: nil},
		{
			name: "custom config",
			config: &Config{
				MinChunkSize:   100,
				MaxChunkSize:   4000,
				MaxConcurrency: 4,
				MaxTokens:      4096,
				MaxCodeLength:  10,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			validator := New(tt.config)
			assert.NotNil(t, validator)
		})
	}
}

func TestRequestValidation(t *testing.T) {
	v := New(&Config{MinChunkSize: 1, MaxChunkSize: 10, MaxConcurrency: 2, MaxTokens: 10, MaxCodeLength: 5})

	tests := []struct {
		name      string
		req       generateRequest
		expectErr bool
	}{
		{name: "code present", req: generateRequest{Code: strPtr("abc")}},
		{name: "empty code is accepted", req: generateRequest{Code: strPtr("")}},
		{name: "multibyte code counted in characters", req: generateRequest{Code: strPtr("ünïcø")}},
		{name: "missing code", req: generateRequest{}, expectErr: true},
		{name: "code too long", req: generateRequest{Code: strPtr("abcdef")}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateStruct(tt.req)
			if tt.expectErr {
				assert.Error(t, err)
				assert.IsType(t, ValidationErrors{}, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMissingFieldMessage(t *testing.T) {
	err := New(nil).ValidateStruct(generateRequest{})
	require.Error(t, err)

	errs, ok := err.(ValidationErrors)
	require.True(t, ok)
	require.Len(t, errs, 1)
	assert.Equal(t, "Code", errs[0].Field)
	assert.Equal(t, "required", errs[0].Tag)
	assert.Equal(t, "Code is required", errs[0].Message)
}

func TestTuningTags(t *testing.T) {
	v := New(DefaultConfig())

	assert.NoError(t, v.ValidateStruct(tuning{ChunkSize: 2000, Concurrency: 1, MaxTokens: 1500}))

	err := v.ValidateStruct(tuning{ChunkSize: 0, Concurrency: 0, MaxTokens: 0})
	require.Error(t, err)
	assert.Len(t, err.(ValidationErrors), 3)
	assert.Contains(t, err.Error(), "ChunkSize has invalid chunk size")
}

func TestGenerationOptionsValidation(t *testing.T) {
	v := New(DefaultConfig())

	tests := []struct {
		name        string
		chunkSize   int
		concurrency int
		maxTokens   int
		expectErr   string
	}{
		{name: "defaults", chunkSize: 2000, concurrency: 1, maxTokens: 1500},
		{name: "zero chunk size", chunkSize: 0, concurrency: 1, maxTokens: 1500, expectErr: "Chunk size 0"},
		{name: "too much concurrency", chunkSize: 2000, concurrency: 99, maxTokens: 1500, expectErr: "Concurrency 99"},
		{name: "no tokens", chunkSize: 2000, concurrency: 1, maxTokens: 0, expectErr: "Max tokens 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.ValidateGenerationOptions(tt.chunkSize, tt.concurrency, tt.maxTokens)
			if tt.expectErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, strings.Contains(err.Error(), tt.expectErr), err.Error())
		})
	}
}

func TestGlobalValidator(t *testing.T) {
	Init(DefaultConfig())
	assert.NotNil(t, Get())
}
