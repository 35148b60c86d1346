// Точка входа Lifecycle Engine — движка жизненного цикла медиафайлов.
// Подкоманды:
//
//	serve        HTTP API, встроенный планировщик прогонов, topologymetrics
//	sweep        один прогон жизненного цикла (для внешнего планировщика)
//	check-costs  проверка стоимости хранения пользователя
//	analytics    аналитика хранилища пользователя
//	migrate      применение миграций БД
package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}
