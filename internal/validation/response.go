package validation

import "time"

func toRecordResponse(record Record) recordResponse {
	resp := recordResponse{
		ID:          record.ID.String(),
		ActionType:  string(record.ActionType),
		RequestedBy: record.RequestedBy.String(),
		Details:     record.Details,
		Status:      string(record.Status),
		Comment:     record.Comment,
		CreatedAt:   record.CreatedAt.Format(time.RFC3339),
	}
	if record.ApprovedBy != nil {
		s := record.ApprovedBy.String()
		resp.ApprovedBy = &s
	}
	if record.RejectedBy != nil {
		s := record.RejectedBy.String()
		resp.RejectedBy = &s
	}
	if record.ResolvedAt != nil {
		s := record.ResolvedAt.Format(time.RFC3339)
		resp.ResolvedAt = &s
	}
	return resp
}
