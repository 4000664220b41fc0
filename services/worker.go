package services

import (
	"log"
	"sort"
	"time"

	"crowdnav-backend/models"
)

// startWorker launches the background planning goroutine. The worker sleeps
// on the condition variable until a request arms it, plans outside the lock
// on a snapshot of the request, then hands the batch over and either
// schedules its own next wake-up (periodic replanning) or disarms itself
// (plan-once mode).
func (c *Coordinator) startWorker() {
	c.wg.Add(1)
	go c.planLoop()
}

func (c *Coordinator) planLoop() {
	defer c.wg.Done()
	log.Printf("🧭 planning worker started")

	c.mu.Lock()
	for {
		for c.waitForWake || !c.runPlanner {
			if c.stopping {
				c.mu.Unlock()
				return
			}
			c.planCond.Wait()
			c.waitForWake = false
		}
		if c.stopping {
			c.mu.Unlock()
			return
		}

		starts := c.plannerStarts.Copy()
		goals := c.plannerGoals.Copy()
		subGoals := c.plannerSubGoals.Copy()
		freq := c.plannerFrequency
		requestID := c.requestID
		c.mu.Unlock()

		passStart := time.Now()
		var batch models.PlanBatch
		var err error
		if len(subGoals) > 0 {
			batch, err = c.planner.MakePlansThrough(starts, subGoals, goals)
		} else {
			batch, err = c.planner.MakePlans(starts, goals)
		}
		if err != nil {
			log.Printf("❌ planning pass failed: %v", err)
		}

		c.mu.Lock()
		if c.requestID != requestID {
			// The request was replaced while this pass ran; its plans must
			// never surface for the successor.
			log.Printf("⚠️ discarding plans computed for replaced request %s", requestID)
		} else if len(batch) > 0 {
			log.Printf("✅ got new plans for %d agents in %v", len(batch), time.Since(passStart))
			c.latestPlans = batch
			c.newPlans = true
			if c.runPlanner {
				c.setStateLocked(models.StateControlling)
			}
			if freq <= 0 {
				c.runPlanner = false
			}
			frame := c.requestFrame
			c.mu.Unlock()
			c.publishPlans(requestID, frame, batch)
			c.mu.Lock()
		} else if c.state == models.StatePlanning {
			// An empty first batch means the request cannot be served at
			// all; the execution loop turns this into an aborted result.
			log.Printf("⚠️ no plans calculated, stopping the planner")
			c.runPlanner = false
			c.setStateLocked(models.StateIdle)
		}

		if freq > 0 {
			sleep := tickPeriod(freq) - time.Since(passStart)
			if sleep > 0 {
				c.waitForWake = true
				time.AfterFunc(sleep, c.planCond.Signal)
			}
		}
	}
}

// publishPlans - stream the fresh plan batch, agents in stable order
func (c *Coordinator) publishPlans(requestID, frame string, batch models.PlanBatch) {
	ids := make([]models.AgentID, 0, len(batch))
	for id := range batch {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	data := models.PlansData{RequestID: requestID, Frame: frame, Plans: make([]models.PlanData, 0, len(ids))}
	for _, id := range ids {
		queue := batch[id]
		if len(queue) == 0 {
			continue
		}
		plan := queue[0]
		data.Plans = append(data.Plans, models.PlanData{
			AgentID: id,
			Poses:   plan,
			Length:  PlanLength(plan),
		})
		LogPlanReady(requestID, id, len(plan))
	}
	c.publish(models.MessageTypePlans, data)
}
