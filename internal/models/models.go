package models

import "time"

// JSON tags follow the record store's column names (the Supabase schema the
// mobile clients already depend on).

type User struct {
	Phone      string `json:"celular"`
	Name       string `json:"nombre"`
	Credential string `json:"clave,omitempty"`
}

type Client struct {
	Phone         string     `json:"celular"`
	QueueID       string     `json:"fila,omitempty"`
	TurnNumber    int        `json:"turno,omitempty"`
	TurnTimestamp *time.Time `json:"hora_turno,omitempty"`
}

// Queue holds the append-style counters for one physical line. All four
// counters only ever increase; turnoActual advances as service proceeds and
// never exceeds turnosOtorgados.
type Queue struct {
	ID                  string `json:"id"`
	CurrentTurn         int    `json:"turnoActual"`
	IssuedTurns         int    `json:"turnosOtorgados"`
	ResolvedTurns       int    `json:"turnosResueltos"`
	AccumulatedWaitTime int    `json:"esperaAcumulada"`
}
