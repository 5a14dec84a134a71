package persistence

import (
	"context"
	"fmt"
)

const (
	KeyPhone       = "phone"
	KeyAccessToken = "access_token"
)

// Credentials reads and writes the logged in user's phone and access token.
type Credentials struct {
	store Store
}

func NewCredentials(store Store) *Credentials {
	return &Credentials{store: store}
}

func (c *Credentials) Store() Store { return c.store }

func (c *Credentials) Phone(ctx context.Context) (string, error) {
	phone, _, err := c.store.Get(ctx, KeyPhone)
	if err != nil {
		return "", fmt.Errorf("failed to read phone: %w", err)
	}
	return phone, nil
}

func (c *Credentials) SetPhone(ctx context.Context, phone string) error {
	if err := c.store.Set(ctx, KeyPhone, phone); err != nil {
		return fmt.Errorf("failed to save phone: %w", err)
	}
	return nil
}

// AccessToken returns "" when nobody is logged in.
func (c *Credentials) AccessToken(ctx context.Context) (string, error) {
	token, _, err := c.store.Get(ctx, KeyAccessToken)
	if err != nil {
		return "", fmt.Errorf("failed to read access token: %w", err)
	}
	return token, nil
}

func (c *Credentials) LoggedIn(ctx context.Context) (bool, error) {
	token, err := c.AccessToken(ctx)
	return token != "", err
}

// Save persists the phone and token returned by a successful verification.
func (c *Credentials) Save(ctx context.Context, phone, token string) error {
	if err := c.SetPhone(ctx, phone); err != nil {
		return err
	}
	if err := c.store.Set(ctx, KeyAccessToken, token); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	return nil
}

func (c *Credentials) Clear(ctx context.Context) error {
	if err := c.store.Remove(ctx, KeyPhone); err != nil {
		return fmt.Errorf("failed to remove phone: %w", err)
	}
	if err := c.store.Remove(ctx, KeyAccessToken); err != nil {
		return fmt.Errorf("failed to remove access token: %w", err)
	}
	return nil
}
