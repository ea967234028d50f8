package services

import "trello-project/microservices/tasks-service/models"

// CanView hides rejected tasks from everyone but admins and the creator.
func CanView(task *models.Task, p models.Principal) bool {
	return task.ApprovalStatus != models.ApprovalRejected || p.IsAdmin() || p.UserID == task.CreatedByID
}

// CanEdit reports whether p may mutate anything inside project.
func CanEdit(project *models.Project, p models.Principal) bool {
	if p.IsAdmin() {
		return true
	}
	if project == nil {
		return false
	}
	return p.UserID == project.OwnerID || project.HasMember(p.UserID)
}

func CheckTaskRead(task *models.Task, p models.Principal) error {
	if !CanView(task, p) {
		return ForbiddenError(ReasonTaskRejected, "This task has been rejected")
	}
	return nil
}

// CheckTaskWrite runs the membership check and then the rejected-task
// restriction. A nil patch means the write cannot lift a rejection.
func CheckTaskWrite(project *models.Project, task *models.Task, p models.Principal, patch *models.TaskPatch) error {
	if !CanEdit(project, p) {
		return ForbiddenError(ReasonNotProjectMember, "You are not a member of this project")
	}
	if task.ApprovalStatus != models.ApprovalRejected || p.IsAdmin() || p.UserID == task.CreatedByID {
		return nil
	}
	if patch != nil {
		if next, ok := patch.ApprovalStatus.Value(); ok && (next == models.ApprovalPending || next == models.ApprovalApproved) {
			return nil
		}
	}
	return ForbiddenError(ReasonTaskRejected, "This task has been rejected and can only be resubmitted for approval")
}

// CanDeleteImmediately is true for admins; anyone else files a delete request.
func CanDeleteImmediately(p models.Principal) bool {
	return p.IsAdmin()
}
