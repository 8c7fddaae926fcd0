// Package password хеширует и проверяет пароли клиентов и тренеров через
// bcrypt. Исходный пароль нигде не хранится и не логируется.
package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hash возвращает bcrypt-хеш пароля для хранения в учетной записи.
func Hash(rawPassword string) (string, error) {
	const op = "password.Hash"
	hashed, err := bcrypt.GenerateFromPassword([]byte(rawPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(hashed), nil
}

// Compare сверяет введенный при входе пароль с хранимым хешем.
// nil означает совпадение.
func Compare(storedHash, rawPassword string) error {
	const op = "password.Compare"
	if err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(rawPassword)); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
