package services

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"crowdnav-backend/models"
)

// LogBuffer - asynchronous batched persistence of plan events
type LogBuffer struct {
	events    []models.PlanEvent
	mu        sync.Mutex
	flushSize int           // batch size
	flushTime time.Duration // auto flush interval
	stopChan  chan bool
}

var logBuffer *LogBuffer

// InitLogging - initialize the event logging system
func InitLogging(flushSize int, flushInterval time.Duration) {
	logBuffer = &LogBuffer{
		events:    make([]models.PlanEvent, 0, flushSize*2),
		flushSize: flushSize,
		flushTime: flushInterval,
		stopChan:  make(chan bool),
	}

	go logBuffer.autoFlush()

	log.Printf("✅ event logging initialized (flushSize: %d, flushInterval: %v)", flushSize, flushInterval)
}

// autoFlush - periodic flush of buffered events
func (lb *LogBuffer) autoFlush() {
	ticker := time.NewTicker(lb.flushTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lb.Flush()
		case <-lb.stopChan:
			lb.Flush() // persist what is left on shutdown
			return
		}
	}
}

// AddLog - append an event to the buffer (asynchronous)
func AddLog(event models.PlanEvent) {
	if logBuffer == nil {
		return
	}

	logBuffer.mu.Lock()
	logBuffer.events = append(logBuffer.events, event)
	size := len(logBuffer.events)
	logBuffer.mu.Unlock()

	// flush immediately when the buffer fills up
	if size >= logBuffer.flushSize {
		go logBuffer.Flush()
	}
}

// Flush - persist all buffered events
func (lb *LogBuffer) Flush() {
	lb.mu.Lock()
	if len(lb.events) == 0 {
		lb.mu.Unlock()
		return
	}

	toSave := make([]models.PlanEvent, len(lb.events))
	copy(toSave, lb.events)
	lb.events = lb.events[:0]
	lb.mu.Unlock()

	if db != nil {
		err := db.CreateInBatches(toSave, 100).Error
		if err != nil {
			log.Printf("❌ failed to persist %d events: %v", len(toSave), err)
		} else {
			log.Printf("💾 persisted %d events", len(toSave))
		}
	}
}

// LogRequestAccepted - a planning request passed validation
func LogRequestAccepted(requestID string, agentCount int) {
	AddLog(models.PlanEvent{
		CreatedAt:  time.Now(),
		EventType:  "request_accepted",
		RequestID:  requestID,
		AgentCount: agentCount,
	})
}

// LogStateChange - coordinator state transition
func LogStateChange(requestID, from, to string) {
	AddLog(models.PlanEvent{
		CreatedAt: time.Now(),
		EventType: "state_change",
		RequestID: requestID,
		State:     to,
		Detail:    fmt.Sprintf("%s -> %s", from, to),
	})
}

// LogPlanReady - a plan was produced for one agent
func LogPlanReady(requestID string, agentID models.AgentID, poses int) {
	AddLog(models.PlanEvent{
		CreatedAt: time.Now(),
		EventType: "plan_ready",
		RequestID: requestID,
		AgentID:   uint64(agentID),
		PlanPoses: poses,
	})
}

// LogAgentDropped - an agent was excluded from a planning pass
func LogAgentDropped(requestID string, agentID models.AgentID, reason string) {
	AddLog(models.PlanEvent{
		CreatedAt: time.Now(),
		EventType: "agent_dropped",
		RequestID: requestID,
		AgentID:   uint64(agentID),
		Detail:    reason,
	})
}

// LogResult - terminal outcome of a request
func LogResult(requestID, status, reason string) {
	AddLog(models.PlanEvent{
		CreatedAt: time.Now(),
		EventType: "result",
		RequestID: requestID,
		State:     status,
		Detail:    reason,
	})
}

// LogMapEvent - the cost grid was generated, loaded or cleared
func LogMapEvent(eventType, frame string, data interface{}) {
	dataJSON, _ := json.Marshal(data)
	AddLog(models.PlanEvent{
		CreatedAt: time.Now(),
		EventType: eventType,
		Frame:     frame,
		DataJSON:  string(dataJSON),
	})
}

// GetRecentLogs - latest events for one request
func GetRecentLogs(requestID string, limit int) ([]models.PlanEvent, error) {
	var events []models.PlanEvent
	err := db.Where("request_id = ?", requestID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// GetLogsByTimeRange - events of one request within a time window
func GetLogsByTimeRange(requestID string, start, end time.Time, limit int) ([]models.PlanEvent, error) {
	var events []models.PlanEvent
	query := db.Where("request_id = ? AND created_at BETWEEN ? AND ?", requestID, start, end)

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Order("created_at DESC").Find(&events).Error
	return events, err
}

// GetLogsByEventType - events of one request filtered by event type
func GetLogsByEventType(requestID string, eventType string, limit int) ([]models.PlanEvent, error) {
	var events []models.PlanEvent
	err := db.Where("request_id = ? AND event_type = ?", requestID, eventType).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// GetLogStats - event counts over the last N hours
func GetLogStats(hours int) (map[string]interface{}, error) {
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	var total int64
	db.Model(&models.PlanEvent{}).
		Where("created_at >= ?", since).
		Count(&total)

	var eventCounts []struct {
		EventType string
		Count     int64
	}
	db.Model(&models.PlanEvent{}).
		Select("event_type, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("event_type").
		Scan(&eventCounts)

	eventMap := make(map[string]int64)
	for _, ec := range eventCounts {
		eventMap[ec.EventType] = ec.Count
	}

	return map[string]interface{}{
		"total_events": total,
		"event_counts": eventMap,
		"time_range":   fmt.Sprintf("Last %d hours", hours),
	}, nil
}

// StopLogging - shut the logging system down
func StopLogging() {
	if logBuffer != nil {
		logBuffer.stopChan <- true
		log.Println("🛑 event logging stopped")
	}
}
