package engine

import (
	"maps"
	"sync"
)

// Ключи Execution Context, которые задаёт Run Controller
// и читают/пишут обработчики узлов.
const (
	// KeyIdentity — ключ идентичности аккаунта (string).
	KeyIdentity = "identityKey"

	// KeyAccountID — ID аккаунта в хранилище (string).
	KeyAccountID = "accountId"

	// KeyTargetPath — путь к исполняемому файлу аккаунта (string).
	KeyTargetPath = "targetPath"

	// KeyTargetHandle — handle запущенного процесса (int).
	KeyTargetHandle = "targetHandle"

	// KeyPayloadList — элементы работы для вставки ([]string).
	KeyPayloadList = "payloadList"

	// KeyPastedItems — элементы, реально вставленные узлом pasteList ([]string).
	KeyPastedItems = "pastedItems"
)

// Context — изменяемый набор фактов одного запуска графа.
//
// Заполняется вызывающим (identityKey, targetPath, payloadList)
// и дополняется обработчиками (например, handle запущенного процесса).
// Принадлежит одному запуску; мьютекс нужен только для чтения
// снимка извне (статус, события) во время выполнения.
type Context struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewContext создаёт контекст с начальными значениями.
func NewContext(seed map[string]any) *Context {
	data := make(map[string]any, len(seed)+4)
	maps.Copy(data, seed)
	return &Context{data: data}
}

// Get возвращает значение по ключу.
func (c *Context) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.data[key]
	return v, ok
}

// Set устанавливает значение.
func (c *Context) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
}

// Delete удаляет значение.
func (c *Context) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
}

// GetString возвращает строковое значение или "".
func (c *Context) GetString(key string) string {
	v, _ := c.Get(key)
	s, _ := v.(string)
	return s
}

// GetInt возвращает целое значение или 0.
func (c *Context) GetInt(key string) int {
	v, _ := c.Get(key)
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}

// GetStrings возвращает список строк. Принимает []string и []any.
func (c *Context) GetStrings(key string) []string {
	v, _ := c.Get(key)
	switch list := v.(type) {
	case []string:
		return append([]string(nil), list...)
	case []any:
		result := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				result = append(result, s)
			}
		}
		return result
	}
	return nil
}

// Snapshot возвращает копию данных контекста.
func (c *Context) Snapshot() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.data)
}
