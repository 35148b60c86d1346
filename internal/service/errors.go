// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import "errors"

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrSweepInProgress — прогон жизненного цикла уже выполняется.
	ErrSweepInProgress = errors.New("прогон жизненного цикла уже выполняется")
	// ErrPolicyLookup — план пользователя не определён, применена политика freemium.
	ErrPolicyLookup = errors.New("не удалось определить тарифный план")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
)
