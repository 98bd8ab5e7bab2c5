// credentials.go — реестр последних действующих токенов владельцев.
//
// Фоновый опрос backend идёт от имени пользователя, но выполняется вне
// HTTP-запроса, где токен обычно берётся из сессии. Поэтому каждый
// аутентифицированный запрос пользователя регистрирует здесь свой access
// token; опрос использует его до истечения срока. После истечения опрос
// владельца останавливается — до следующего запроса пользователя.
package service

import (
	"context"
	"sync"
	"time"
)

// ownerCredential — токен владельца со сроком действия.
type ownerCredential struct {
	token     string
	expiresAt time.Time
}

// CredentialStore — потокобезопасный реестр токенов владельцев.
type CredentialStore struct {
	mu    sync.RWMutex
	creds map[string]ownerCredential
}

// NewCredentialStore создаёт пустой реестр.
func NewCredentialStore() *CredentialStore {
	return &CredentialStore{creds: make(map[string]ownerCredential)}
}

// Put регистрирует токен владельца. Вызывается middleware на каждом
// аутентифицированном запросе.
func (c *CredentialStore) Put(owner, token string, expiresAt time.Time) {
	if owner == "" || token == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds[owner] = ownerCredential{token: token, expiresAt: expiresAt}
}

// Get возвращает действующий токен владельца.
// Истёкший токен (с буфером 30с на время запроса) удаляется.
func (c *CredentialStore) Get(owner string) (string, error) {
	c.mu.RLock()
	cred, ok := c.creds[owner]
	c.mu.RUnlock()

	if !ok {
		return "", ErrNoCredential
	}
	if time.Now().After(cred.expiresAt.Add(-30 * time.Second)) {
		c.mu.Lock()
		delete(c.creds, owner)
		c.mu.Unlock()
		return "", ErrNoCredential
	}
	return cred.token, nil
}

// Provider возвращает TokenProvider-совместимую функцию для владельца.
func (c *CredentialStore) Provider(owner string) func(ctx context.Context) (string, error) {
	return func(_ context.Context) (string, error) {
		return c.Get(owner)
	}
}

// Drop удаляет токен владельца (logout).
func (c *CredentialStore) Drop(owner string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.creds, owner)
}
