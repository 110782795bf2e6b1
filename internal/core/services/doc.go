// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters): the embedding client, the indexing
// orchestrator, retrieval, answering and the background scheduler.
//
// Services are pure Go with no CGO or external dependencies.
package services
