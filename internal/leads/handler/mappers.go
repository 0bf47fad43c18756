package handler

import (
	"fantopark_backend/internal/leads/domain"
	"fantopark_backend/internal/leads/service"
	"fantopark_backend/internal/leads/transport"
)

func toIntake(req transport.LeadIntakeRequest) domain.Intake {
	return domain.Intake{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Company:        req.Company,
		BusinessType:   req.BusinessType,
		Source:         req.Source,
		LeadForEvent:   req.LeadForEvent,
		PotentialValue: req.PotentialValue,
		Attributes:     req.Attributes,
		AssignedTo:     req.AssignedTo,
	}
}

func toLeadResponse(l domain.Lead) transport.LeadResponse {
	events := l.ClientEvents
	if events == nil {
		events = []string{}
	}
	return transport.LeadResponse{
		ID:                       l.ID,
		Name:                     l.Name,
		Email:                    l.Email,
		Phone:                    l.Phone,
		Company:                  l.Company,
		BusinessType:             l.BusinessType,
		Source:                   l.Source,
		LeadForEvent:             l.LeadForEvent,
		PotentialValue:           l.PotentialValue,
		Attributes:               l.Attributes,
		Status:                   string(l.Status),
		AssignedTo:               l.AssignedTo,
		FollowUpDate:             l.FollowUpDate,
		ClientID:                 l.ClientID,
		IsPrimaryLead:            l.IsPrimaryLead,
		ClientTotalLeads:         l.ClientTotalLeads,
		ClientEvents:             events,
		ClientFirstContact:       l.ClientFirstContact,
		ManualAssignmentOverride: l.ManualAssignmentOverride,
		AutoAssigned:             l.AutoAssigned,
		AssignmentReason:         l.AssignmentReason,
		AssignmentRuleID:         l.AssignmentRuleID,
		AssignmentRuleName:       l.AssignmentRuleName,
		AssignedAt:               l.AssignedAt,
		CreatedAt:                l.CreatedAt,
		UpdatedAt:                l.UpdatedAt,
	}
}

func toAssignmentResponse(o domain.AssignmentOutcome) transport.AssignmentResponse {
	return transport.AssignmentResponse{
		AssignedTo:   o.AssignedTo,
		Source:       string(o.Source),
		Reason:       o.Reason,
		AutoAssigned: o.AutoAssigned,
		RuleID:       o.RuleID,
		RuleName:     o.RuleName,
		Override:     o.Override,
	}
}

func toImportResponse(r *service.ImportResult) transport.ImportLeadsResponse {
	rows := make([]transport.ImportRowResponse, 0, len(r.Rows))
	for _, row := range r.Rows {
		item := transport.ImportRowResponse{
			Index:      row.Index,
			LeadID:     row.LeadID,
			ClientID:   row.ClientID,
			AssignedTo: row.AssignedTo,
			Source:     string(row.Source),
			Reason:     row.Reason,
			Override:   row.Override,
		}
		if row.Err != nil {
			item.Error = row.Err.Error()
		}
		rows = append(rows, item)
	}
	return transport.ImportLeadsResponse{
		Total:      r.Total,
		Created:    r.Created,
		Failed:     r.Failed,
		Assigned:   r.Assigned,
		Unassigned: r.Unassigned,
		Rows:       rows,
	}
}

func toBulkAssignResponse(r *service.BulkAssignResult) transport.BulkAssignResponse {
	items := make([]transport.BulkAssignItemResponse, 0, len(r.Items))
	for _, it := range r.Items {
		item := transport.BulkAssignItemResponse{
			LeadID:     it.LeadID,
			AssignedTo: it.AssignedTo,
			Source:     string(it.Source),
		}
		if it.Err != nil {
			item.Error = it.Err.Error()
		}
		items = append(items, item)
	}
	return transport.BulkAssignResponse{
		Processed: r.Processed,
		Assigned:  r.Assigned,
		Unmatched: r.Unmatched,
		Failed:    r.Failed,
		Items:     items,
	}
}

func toTransitionResponse(r *service.TransitionResult) transport.TransitionResponse {
	return transport.TransitionResponse{
		Lead:         toLeadResponse(r.Lead),
		From:         string(r.From),
		To:           string(r.To),
		SubFlow:      string(r.SubFlow),
		FollowUpDate: r.FollowUpDate,
	}
}

func toHistoryResponse(changes []domain.StatusChange) transport.HistoryResponse {
	items := make([]transport.StatusChangeResponse, 0, len(changes))
	for _, ch := range changes {
		items = append(items, transport.StatusChangeResponse{
			ID:           ch.ID,
			OldStatus:    string(ch.OldStatus),
			NewStatus:    string(ch.NewStatus),
			ChangedBy:    ch.ChangedBy,
			FollowUpDate: ch.FollowUpDate,
			Note:         ch.Note,
			CreatedAt:    ch.CreatedAt,
		})
	}
	return transport.HistoryResponse{Items: items}
}

func toClientResponse(c domain.Client) transport.ClientResponse {
	leads := make([]transport.LeadResponse, 0, len(c.Leads))
	for _, l := range c.Leads {
		leads = append(leads, toLeadResponse(l))
	}
	return transport.ClientResponse{
		ClientID:          c.ClientID,
		TotalLeads:        c.TotalLeads,
		PrimaryLeadID:     c.PrimaryLeadID,
		PrimaryAssignedTo: c.PrimaryAssignedTo,
		Events:            c.Events,
		FirstContact:      c.FirstContact,
		Leads:             leads,
	}
}
