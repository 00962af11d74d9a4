package vaultio

import "errors"

// ErrVaultNotFound is returned when the vault path does not exist.
var ErrVaultNotFound = errors.New("vaultio: vault file not found")

// ErrVaultAlreadyExists is returned by a create operation when a file
// already occupies the target path.
var ErrVaultAlreadyExists = errors.New("vaultio: vault already exists")
