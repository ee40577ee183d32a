// Package validation содержит функции валидации входных данных.
package validation

// IsValidPlayerID проверяет формат идентификатора игрока локальным правилом:
// только цифры ASCII, длина от 5 до 15 символов. Этим же правилом пользуется
// oracle-клиент как запасным вариантом при недоступности сервиса.
func IsValidPlayerID(id string) bool {
	if len(id) < 5 || len(id) > 15 {
		return false
	}

	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}

	return true
}
