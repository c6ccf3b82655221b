package command

import (
	"fmt"

	"github.com/grovetools/pulse/errors"
	"github.com/grovetools/pulse/pkg/models"
)

// UnresolvedCodeError means the code was never minted.
type UnresolvedCodeError struct {
	Code string
	Err  error
}

func (e *UnresolvedCodeError) Error() string {
	return fmt.Sprintf("code %s does not resolve to any item", e.Code)
}

func (e *UnresolvedCodeError) Unwrap() error { return e.Err }

// ErrorCode implements the errors package code lookup.
func (e *UnresolvedCodeError) ErrorCode() errors.ErrorCode { return errors.ErrCodeCodeNotFound }

// ItemNotFoundError means the code exists but its item is not in the current
// snapshot.
type ItemNotFoundError struct {
	Code string
	Key  string
}

func (e *ItemNotFoundError) Error() string {
	return fmt.Sprintf("item %s is no longer in the current snapshot", e.Code)
}

// ErrorCode implements the errors package code lookup.
func (e *ItemNotFoundError) ErrorCode() errors.ErrorCode { return errors.ErrCodeItemNotFound }

// CodeResolver maps a code to its natural key. *registry.Registry satisfies it.
type CodeResolver interface {
	Resolve(code models.Code) (string, error)
}

// SnapshotSource provides the current snapshot. *store.Store satisfies it.
type SnapshotSource interface {
	Current() *models.Snapshot
}

// Resolved is a command bound to its target item.
type Resolved struct {
	Command
	// Target is the parsed code; zero for code-less commands.
	Target models.Code
	// Item is a private copy of the target; nil for code-less commands.
	Item *models.Item
}

// Resolver binds parsed commands to items at execution time.
type Resolver struct {
	Codes CodeResolver
	Items SnapshotSource
}

// Resolve looks the command's code up in the registry, then in the current
// snapshot.
func (r Resolver) Resolve(cmd Command) (Resolved, error) {
	res := Resolved{Command: cmd}
	if cmd.Code == "" {
		return res, nil
	}

	code, err := models.ParseCode(cmd.Code)
	if err != nil {
		return res, &UnresolvedCodeError{Code: cmd.Code, Err: err}
	}
	key, err := r.Codes.Resolve(code)
	if err != nil {
		return res, &UnresolvedCodeError{Code: code.String(), Err: err}
	}

	item, _, ok := r.Items.Current().FindByKey(code.Category, key)
	if !ok {
		return res, &ItemNotFoundError{Code: code.String(), Key: key}
	}
	item = item.Clone()
	res.Target = code
	res.Item = &item
	return res, nil
}
