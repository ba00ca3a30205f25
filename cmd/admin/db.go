package main

import (
	"database/sql"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

func dbCmd(args []string) {
	fs := flag.NewFlagSet("db", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	dbPath := fs.String("db", "", "sqlite db path (optional; defaults to <data>/index/matches.sqlite)")
	matchID := fs.String("match", "", "match id filter")
	limit := fs.Int("limit", 20, "result limit")
	_ = fs.Parse(args)

	q := "matches"
	if fs.NArg() > 0 {
		q = strings.TrimSpace(fs.Arg(0))
	}
	if *limit <= 0 {
		*limit = 20
	}

	path := strings.TrimSpace(*dbPath)
	if path == "" {
		path = filepath.Join(*dataDir, "index", "matches.sqlite")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer db.Close()

	switch q {
	case "matches":
		q := `SELECT id,started_at,finished_at,map_size,seed,max_turns,turns,winner,reason,final_digest,log_path FROM matches ORDER BY started_at DESC LIMIT ?`
		args := []any{*limit}
		if id := strings.TrimSpace(*matchID); id != "" {
			q = `SELECT id,started_at,finished_at,map_size,seed,max_turns,turns,winner,reason,final_digest,log_path FROM matches WHERE id=? LIMIT ?`
			args = []any{id, *limit}
		}
		rows, err := db.Query(q, args...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			// Unfinished matches leave finished_at, turns, winner, reason
			// and final_digest NULL.
			var r struct {
				ID          string         `json:"id"`
				StartedAt   string         `json:"started_at"`
				FinishedAt  sql.NullString `json:"finished_at"`
				MapSize     int            `json:"map_size"`
				Seed        int64          `json:"seed"`
				MaxTurns    int            `json:"max_turns"`
				Turns       sql.NullInt64  `json:"turns"`
				Winner      sql.NullInt64  `json:"winner"`
				Reason      sql.NullString `json:"reason"`
				FinalDigest sql.NullString `json:"final_digest"`
				LogPath     string         `json:"log_path"`
			}
			if err := rows.Scan(
				&r.ID, &r.StartedAt, &r.FinishedAt,
				&r.MapSize, &r.Seed, &r.MaxTurns,
				&r.Turns, &r.Winner, &r.Reason, &r.FinalDigest,
				&r.LogPath,
			); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "seats":
		q := `SELECT match_id,seat,agent,joined_at FROM seats ORDER BY joined_at DESC LIMIT ?`
		args := []any{*limit}
		if id := strings.TrimSpace(*matchID); id != "" {
			q = `SELECT match_id,seat,agent,joined_at FROM seats WHERE match_id=? ORDER BY seat LIMIT ?`
			args = []any{id, *limit}
		}
		rows, err := db.Query(q, args...)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				MatchID  string `json:"match_id"`
				Seat     int    `json:"seat"`
				Agent    string `json:"agent"`
				JoinedAt string `json:"joined_at"`
			}
			if err := rows.Scan(&r.MatchID, &r.Seat, &r.Agent, &r.JoinedAt); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	case "turns":
		id := strings.TrimSpace(*matchID)
		if id == "" {
			fmt.Fprintln(os.Stderr, "missing -match")
			os.Exit(2)
		}
		rows, err := db.Query(`SELECT turn,orders,events,digest FROM turns WHERE match_id=? ORDER BY turn DESC LIMIT ?`, id, *limit)
		if err != nil {
			fmt.Fprintln(os.Stderr, "query:", err)
			os.Exit(1)
		}
		defer rows.Close()
		for rows.Next() {
			var r struct {
				MatchID string `json:"match_id"`
				Turn    int    `json:"turn"`
				Orders  int    `json:"orders"`
				Events  int    `json:"events"`
				Digest  string `json:"digest"`
			}
			if err := rows.Scan(&r.Turn, &r.Orders, &r.Events, &r.Digest); err != nil {
				fmt.Fprintln(os.Stderr, "scan:", err)
				os.Exit(1)
			}
			r.MatchID = id
			printJSON(r)
		}
		if err := rows.Err(); err != nil {
			fmt.Fprintln(os.Stderr, "rows:", err)
			os.Exit(1)
		}

	default:
		fmt.Fprintln(os.Stderr, "unknown query:", q)
		fmt.Fprintln(os.Stderr, "usage: admin db [-data ./data] [-db PATH] [-match ID] [-limit N] matches|seats|turns")
		os.Exit(2)
	}
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}
