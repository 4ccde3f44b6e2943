// Package schema проверяет форму внешних JSON-документов до их разбора.
//
// Схемы лежат рядом в *.schema.json и встраиваются в бинарь:
//   - graph.schema.json   — граф из редактора (nodes, edges)
//   - command.schema.json — команда управления из очереди
//
// Схема отвечает только за форму: обязательные поля, типы, непустые
// строки. Уникальность ID узлов и ссылки рёбер проверяет engine.Validate.
package schema
