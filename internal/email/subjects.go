package email

const (
	subjectLeadAssignedFmt = "New lead assigned: %s"
	subjectFollowUpDueFmt  = "Follow-up due: %s"
)
