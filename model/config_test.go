package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizationMethodValidate(t *testing.T) {
	t.Run("All supported methods are valid", func(t *testing.T) {
		for _, method := range []AnonymizationMethod{MethodReplace, MethodMask, MethodHash, MethodRedact} {
			assert.NoError(t, method.Validate(), "Expected method %q to be valid", method)
		}
	})

	t.Run("Unknown method is rejected", func(t *testing.T) {
		err := AnonymizationMethod("scramble").Validate()

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid anonymization method")
	})

	t.Run("Empty method is rejected", func(t *testing.T) {
		err := AnonymizationMethod("").Validate()

		assert.Error(t, err)
	})
}

func TestAnonymizationConfigValidate(t *testing.T) {
	t.Run("Disabled config is valid regardless of method", func(t *testing.T) {
		assert.NoError(t, AnonymizationConfig{}.Validate())
		assert.NoError(t, AnonymizationConfig{Enabled: false, Method: "scramble"}.Validate())
	})

	t.Run("Enabled config requires a supported method", func(t *testing.T) {
		assert.NoError(t, AnonymizationConfig{Enabled: true, Method: MethodReplace}.Validate())

		err := AnonymizationConfig{Enabled: true, Method: "scramble"}.Validate()

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "invalid anonymization method")
	})

	t.Run("Enabled config without a method is rejected", func(t *testing.T) {
		assert.Error(t, AnonymizationConfig{Enabled: true}.Validate())
	})
}

func TestAnonymizationConfigKeyString(t *testing.T) {
	t.Run("KeyString is deterministic", func(t *testing.T) {
		config := AnonymizationConfig{
			Enabled:     true,
			Method:      MethodReplace,
			EntityTypes: []EntityType{EntityPerson, EntityUSSSN},
		}

		assert.Equal(t, config.KeyString(), config.KeyString())
	})

	t.Run("Allowlist order does not change KeyString", func(t *testing.T) {
		a := AnonymizationConfig{
			Enabled:     true,
			Method:      MethodReplace,
			EntityTypes: []EntityType{EntityPerson, EntityUSSSN},
		}
		b := AnonymizationConfig{
			Enabled:     true,
			Method:      MethodReplace,
			EntityTypes: []EntityType{EntityUSSSN, EntityPerson},
		}

		assert.Equal(t, a.KeyString(), b.KeyString(), "Expected sorted allowlist serialization")
	})

	t.Run("Method changes KeyString", func(t *testing.T) {
		a := AnonymizationConfig{Enabled: true, Method: MethodReplace}
		b := AnonymizationConfig{Enabled: true, Method: MethodMask}

		assert.NotEqual(t, a.KeyString(), b.KeyString())
	})

	t.Run("Enabled flag changes KeyString", func(t *testing.T) {
		a := AnonymizationConfig{Enabled: true, Method: MethodReplace}
		b := AnonymizationConfig{Enabled: false, Method: MethodReplace}

		assert.NotEqual(t, a.KeyString(), b.KeyString())
	})

	t.Run("Allowlist changes KeyString", func(t *testing.T) {
		a := AnonymizationConfig{Enabled: true, Method: MethodReplace}
		b := AnonymizationConfig{Enabled: true, Method: MethodReplace, EntityTypes: []EntityType{EntityUSSSN}}

		assert.NotEqual(t, a.KeyString(), b.KeyString())
	})
}
