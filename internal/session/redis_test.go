package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/soapyfy/internal/model"
)

func TestNewRedisStore_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	s, err := NewRedisStore(ctx, "127.0.0.1:1", time.Hour)
	assert.Error(t, err)
	assert.Nil(t, s)
}

// Redis хранит состояние в JSON, поэтому оно должно восстанавливаться без потерь.
func TestStateJSON(t *testing.T) {
	st := NewState()
	st.Cart.AddItem(soap, 2)
	st.User = &Account{ID: "u1", Email: "marie@example.com"}
	st.Language = model.LanguageEN
	st.UpdatedAt = time.Date(2026, 10, 16, 8, 0, 0, 0, time.UTC)

	data, err := json.Marshal(st)
	require.NoError(t, err)

	var got State
	require.NoError(t, json.Unmarshal(data, &got))

	assert.Equal(t, 2, got.Cart.ItemCount())
	assert.Equal(t, "Lavender", got.Cart.Lines[0].Name.EN)
	require.NotNil(t, got.User)
	assert.Equal(t, "marie@example.com", got.User.Email)
	assert.Nil(t, got.Admin)
	assert.Equal(t, model.LanguageEN, got.Language)
	assert.True(t, st.UpdatedAt.Equal(got.UpdatedAt))
}
