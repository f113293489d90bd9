package models

import (
	"errors"
	"fmt"
)

// Tipos de erro. Compare com errors.Is.
var (
	ErrValidation  = errors.New("erro de validação")
	ErrNotFound    = errors.New("não encontrado")
	ErrConflict    = errors.New("conflito")
	ErrCapacity    = errors.New("estoque insuficiente")
	ErrTransaction = errors.New("falha na transação")
	ErrPersistence = errors.New("falha na persistência")
)

// Error é uma falha do marketplace com uma mensagem para o usuário e uma
// dica opcional de como se recuperar.
type Error struct {
	Kind    error
	Message string
	Tip     string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Cause }

// WithTip retorna uma cópia de e com a dica informada.
func (e *Error) WithTip(tip string) *Error {
	c := *e
	c.Tip = tip
	return &c
}

func Validation(format string, args ...any) *Error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Kind: ErrConflict, Message: fmt.Sprintf(format, args...)}
}

func Capacity(format string, args ...any) *Error {
	return &Error{Kind: ErrCapacity, Message: fmt.Sprintf(format, args...)}
}

// Transaction embrulha uma falha do gateway da blockchain.
func Transaction(cause error, message string) *Error {
	return &Error{Kind: ErrTransaction, Message: message, Cause: cause}
}

// Persistence embrulha uma falha ao gravar o snapshot.
func Persistence(cause error, what string) *Error {
	return &Error{Kind: ErrPersistence, Message: "falha ao salvar " + what, Cause: cause}
}

// TipOf extrai a dica de recuperação de err, se houver.
func TipOf(err error) string {
	var me *Error
	if errors.As(err, &me) {
		return me.Tip
	}
	return ""
}
