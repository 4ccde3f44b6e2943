// autopilot — инструмент командной строки для управления агентом
// через HTTP API.
//
// Использование:
//
//	autopilot [--api-url URL] [--json] <command> [subcommand] [flags]
//
// Команды:
//
//	status    Состояние автоматизации и пула
//	start     Запустить проход
//	pause     Приостановить
//	resume    Продолжить
//	stop      Остановить
//	fleet     Управление пулом процессов
//	workflow  Управление графами
package main

import (
	"fmt"
	"os"

	"github.com/shaiso/Autopilot/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	if err := cli.NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
