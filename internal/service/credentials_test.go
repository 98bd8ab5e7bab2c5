package service

import (
	"context"
	"errors"
	"testing"
	"time"
)

// TestCredentialsPutGet проверяет регистрацию и получение токена.
func TestCredentialsPutGet(t *testing.T) {
	store := NewCredentialStore()
	store.Put("user-1", "token-abc", time.Now().Add(time.Hour))

	token, err := store.Get("user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if token != "token-abc" {
		t.Errorf("Ожидался token-abc, получено %s", token)
	}
}

// TestCredentialsGetUnknownOwner проверяет отсутствие токена.
func TestCredentialsGetUnknownOwner(t *testing.T) {
	store := NewCredentialStore()

	if _, err := store.Get("nobody"); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Ожидалась ErrNoCredential, получено %v", err)
	}
}

// TestCredentialsExpiredToken проверяет,
// что истёкший токен удаляется с буфером 30 секунд.
func TestCredentialsExpiredToken(t *testing.T) {
	store := NewCredentialStore()

	// Токен истекает через 10 секунд — с буфером 30с уже непригоден.
	store.Put("user-1", "token-abc", time.Now().Add(10*time.Second))
	if _, err := store.Get("user-1"); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Ожидалась ErrNoCredential для токена в буферной зоне, получено %v", err)
	}

	// Повторный Get — токен уже удалён из реестра.
	if _, err := store.Get("user-1"); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Ожидалась ErrNoCredential после удаления, получено %v", err)
	}
}

// TestCredentialsPutOverwrites проверяет замену токена при повторном запросе.
func TestCredentialsPutOverwrites(t *testing.T) {
	store := NewCredentialStore()
	store.Put("user-1", "old-token", time.Now().Add(time.Hour))
	store.Put("user-1", "new-token", time.Now().Add(2*time.Hour))

	token, err := store.Get("user-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if token != "new-token" {
		t.Errorf("Ожидался new-token, получено %s", token)
	}
}

// TestCredentialsPutEmptyIgnored проверяет игнорирование пустых значений.
func TestCredentialsPutEmptyIgnored(t *testing.T) {
	store := NewCredentialStore()
	store.Put("", "token", time.Now().Add(time.Hour))
	store.Put("user-1", "", time.Now().Add(time.Hour))

	if _, err := store.Get(""); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Пустой owner не должен регистрироваться")
	}
	if _, err := store.Get("user-1"); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Пустой токен не должен регистрироваться")
	}
}

// TestCredentialsProvider проверяет TokenProvider-обёртку.
func TestCredentialsProvider(t *testing.T) {
	store := NewCredentialStore()
	provider := store.Provider("user-1")

	if _, err := provider(context.Background()); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Ожидалась ErrNoCredential до регистрации, получено %v", err)
	}

	store.Put("user-1", "token-abc", time.Now().Add(time.Hour))
	token, err := provider(context.Background())
	if err != nil {
		t.Fatalf("provider: %v", err)
	}
	if token != "token-abc" {
		t.Errorf("Ожидался token-abc, получено %s", token)
	}
}

// TestCredentialsDrop проверяет удаление токена при logout.
func TestCredentialsDrop(t *testing.T) {
	store := NewCredentialStore()
	store.Put("user-1", "token-abc", time.Now().Add(time.Hour))
	store.Drop("user-1")

	if _, err := store.Get("user-1"); !errors.Is(err, ErrNoCredential) {
		t.Errorf("Ожидалась ErrNoCredential после Drop, получено %v", err)
	}
}
