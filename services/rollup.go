package services

import "trello-project/microservices/tasks-service/models"

// RollupTaskProgress returns round(100*completed/total). ok is false for an
// empty list, in which case the task's progress must be left alone.
func RollupTaskProgress(subtasks []models.Subtask) (progress int, ok bool) {
	n := len(subtasks)
	if n == 0 {
		return 0, false
	}
	k := 0
	for _, s := range subtasks {
		if s.Completed {
			k++
		}
	}
	return roundHalfUp(100*k, n), true
}

// RollupProjectProgress returns the rounded mean task progress, 0 for a
// project without tasks.
func RollupProjectProgress(tasks []models.Task) int {
	if len(tasks) == 0 {
		return 0
	}
	sum := 0
	for _, t := range tasks {
		sum += t.Progress
	}
	return roundHalfUp(sum, len(tasks))
}

// roundHalfUp computes round(num/den) for non-negative operands.
func roundHalfUp(num, den int) int {
	return (2*num + den) / (2 * den)
}
