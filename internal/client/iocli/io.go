package iocli

// IO абстрагирует терминал для команд CLI
type IO interface {
	Println(a ...any)
	Printf(format string, a ...any)
	// ReadInput печатает prompt и читает строку без завершающих пробелов
	ReadInput(prompt string) (string, error)
	// ReadPassword читает строку без эха, если ввод идет с терминала
	ReadPassword(prompt string) (string, error)
	Write(p []byte) (n int, err error)
}
