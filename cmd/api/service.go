package main

import "context"

// BatchMaintenance - what the background recovery loop needs from the
// batch service
type BatchMaintenance interface {
	ReviveOrphans(ctx context.Context, limit int)
}
