// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError(t *testing.T) {
	err := New(KindSchema, "invalid input")
	if err.Error() != "invalid input" {
		t.Errorf("expected 'invalid input', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindInternal, "failed to validate")
	if wrapped.Error() != "failed to validate: invalid input" {
		t.Errorf("expected 'failed to validate: invalid input', got '%s'", wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindSchema, "invalid input")
	if GetKind(err) != KindSchema {
		t.Errorf("expected KindSchema, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindInternal, "failed")
	if GetKind(wrapped) != KindInternal {
		t.Errorf("expected KindInternal, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", GetKind(errors.New("std error")))
	}
}

func TestContextKeepsKind(t *testing.T) {
	err := Semantic(KindConflict, "vswitches[0].vlans[1].name", "duplicate vlan name 'lan'")
	err = Context(err, "vswitch 'sw0'")

	assert.Equal(t, KindConflict, GetKind(err))
	assert.Equal(t, "vswitch 'sw0': duplicate vlan name 'lan'", err.Error())
	assert.Equal(t, "vswitches[0].vlans[1].name", Field(err))
	assert.True(t, IsSemantic(err))
	assert.False(t, IsSchema(err))
	assert.Nil(t, Context(nil, "ignored"))
}

func TestSchema(t *testing.T) {
	err := Schema("interfaces[0].ipv4_address", "10.0.0.300", "invalid ipv4 address")

	assert.True(t, IsSchema(err))
	attrs := GetAttributes(err)
	assert.Equal(t, "interfaces[0].ipv4_address", attrs[AttrField])
	assert.Equal(t, "10.0.0.300", attrs[AttrValue])
}

func TestSemanticKinds(t *testing.T) {
	tests := []struct {
		kind     Kind
		semantic bool
	}{
		{KindSemantic, true},
		{KindNotFound, true},
		{KindConflict, true},
		{KindSchema, false},
		{KindInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			assert.Equal(t, tt.semantic, IsSemantic(New(tt.kind, "x")))
		})
	}
}

func TestAttributes(t *testing.T) {
	err := New(KindSchema, "invalid input")
	err = Attr(err, "field", "port")
	err = Attr(err, "value", 80)

	attrs := GetAttributes(err)
	if attrs["field"] != "port" {
		t.Errorf("expected port, got %v", attrs["field"])
	}
	if attrs["value"] != 80 {
		t.Errorf("expected 80, got %v", attrs["value"])
	}

	wrapped := Wrap(err, KindInternal, "failed")
	wrapped = Attr(wrapped, "operation", "compile")

	allAttrs := GetAttributes(wrapped)
	if allAttrs["field"] != "port" || allAttrs["operation"] != "compile" {
		t.Errorf("missing attributes: %v", allAttrs)
	}
}
