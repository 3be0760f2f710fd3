package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAccount_State(t *testing.T) {
	empty := ""
	cred := "Y3JlZA=="

	tests := []struct {
		name    string
		cred    *string
		want    AccountState
		hasCred bool
	}{
		{name: "no credential", cred: nil, want: StateNew},
		{name: "empty credential", cred: &empty, want: StateNew},
		{name: "registered", cred: &cred, want: StateRegistered, hasCred: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := &Account{ID: "id", NodeCredential: tt.cred}
			assert.Equal(t, tt.want, a.State())
			assert.Equal(t, tt.hasCred, a.HasNodeCredential())
		})
	}
}
