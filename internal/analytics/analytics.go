package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"gosha-bot/internal/storage"
)

// DailyStats содержит статистику за день
type DailyStats struct {
	Date         string               `json:"date"`
	Requests     int                  `json:"requests"`
	UniqueChats  int                  `json:"unique_chats"`
	UniqueUsers  int                  `json:"unique_users"`
	Errors       int                  `json:"errors"`
	ByKind       map[storage.Kind]int `json:"by_kind"`
	AvgLatencyMS int64                `json:"avg_latency_ms"`
	ChatStats    map[int64]ChatStats  `json:"chat_stats"`
}

// ChatStats содержит статистику по чату
type ChatStats struct {
	ChatID   int64 `json:"chat_id"`
	Requests int   `json:"requests"`
	Errors   int   `json:"errors"`
}

// AnalyzeDailyLogs анализирует журнал за указанную дату
func AnalyzeDailyLogs(events []storage.Event, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:      startOfDay.Format("2006-01-02"),
		ByKind:    make(map[storage.Kind]int),
		ChatStats: make(map[int64]ChatStats),
	}

	uniqueUsers := make(map[int64]bool)
	var latencyTotal int64
	var latencyCount int64

	for _, event := range events {
		if event.Timestamp.Before(startOfDay) || !event.Timestamp.Before(endOfDay) {
			continue
		}
		// Записи истории без ответа бота не считаются запросами
		if event.Kind == storage.KindRecorded || event.Kind == "" {
			continue
		}

		stats.Requests++
		stats.ByKind[event.Kind]++
		if event.UserID != 0 {
			uniqueUsers[event.UserID] = true
		}

		chatStat := stats.ChatStats[event.ChatID]
		chatStat.ChatID = event.ChatID
		chatStat.Requests++
		if event.Error != "" {
			stats.Errors++
			chatStat.Errors++
		}
		stats.ChatStats[event.ChatID] = chatStat

		if event.LatencyMS > 0 {
			latencyTotal += event.LatencyMS
			latencyCount++
		}
	}

	stats.UniqueUsers = len(uniqueUsers)
	stats.UniqueChats = len(stats.ChatStats)
	if latencyCount > 0 {
		stats.AvgLatencyMS = latencyTotal / latencyCount
	}
	return stats
}

// GenerateReportSummary создает текстовое резюме для отправки в чат
func (ds *DailyStats) GenerateReportSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, `Статистика Гоши за %s:

Общая активность:
- Всего запросов: %d
- Чатов: %d
- Уникальных пользователей: %d
- Ошибок: %d
- Средняя задержка: %d мс

`, ds.Date, ds.Requests, ds.UniqueChats, ds.UniqueUsers, ds.Errors, ds.AvgLatencyMS)

	if len(ds.ByKind) > 0 {
		b.WriteString("По типам:\n")
		kinds := make([]string, 0, len(ds.ByKind))
		for k := range ds.ByKind {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			fmt.Fprintf(&b, "- %s: %d\n", k, ds.ByKind[storage.Kind(k)])
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Активность чатов (%d):\n", len(ds.ChatStats))
	ids := make([]int64, 0, len(ds.ChatStats))
	for id := range ds.ChatStats {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		cs := ds.ChatStats[id]
		fmt.Fprintf(&b, "- Чат %d: %d запросов", id, cs.Requests)
		if cs.Errors > 0 {
			fmt.Fprintf(&b, ", %d ошибок", cs.Errors)
		}
		b.WriteString("\n")
	}

	return b.String()
}

// ToJSON сериализует статистику в JSON для детального анализа
func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
