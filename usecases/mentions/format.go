package mentions

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"mentionguard/models"
	"mentionguard/utils"
)

// MaxMessageLength keeps rendered text under Discord's 2000 character message limit
const MaxMessageLength = 1900

var issueTitles = map[models.IssueType]string{
	models.IssueTypeNonMentionableRole:        "Roles that cannot be mentioned",
	models.IssueTypeChannelBlocksMentions:     "Channels denying mentions to @everyone",
	models.IssueTypeChannelBlocksRoleMentions: "Channels denying mentions to specific roles",
	models.IssueTypeNoMentionRole:             "No role is allowed to mention @everyone, @here or roles",
}

// FormatDiagnosis renders issues grouped by type
func FormatDiagnosis(d *models.Diagnosis) string {
	if len(d.Issues) == 0 {
		return "✅ No mention permission issues found."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 **Mention permission check** - severity **%s**\n", d.Severity)
	for _, issue := range d.Issues {
		fmt.Fprintf(&b, "\n**%s** (%s)\n", issueTitles[issue.Type], issue.Severity)
		for _, target := range issue.Targets {
			b.WriteString("• " + describeTarget(target))
			if target.Informational() {
				fmt.Fprintf(&b, " - manual: %s", target.ManualReason)
			}
			b.WriteString("\n")
		}
	}
	return utils.Truncate(b.String(), MaxMessageLength)
}

// planMarkerReserve keeps room for the "...and N more" lines when a plan is cut short
const planMarkerReserve = 80

// FormatPlan lists proposed fixes with their risk and reversibility, followed by manual actions
func FormatPlan(plan models.Plan) string {
	return formatPlan(plan, MaxMessageLength)
}

// formatPlan stops listing at whole lines once limit runes would be exceeded and says how many were left out
func formatPlan(plan models.Plan, limit int) string {
	var b strings.Builder
	used := 0
	write := func(s string) {
		b.WriteString(s)
		used += utf8.RuneCountInString(s)
	}
	fits := func(s string) bool {
		return used+utf8.RuneCountInString(s)+planMarkerReserve <= limit
	}

	if len(plan.Actions) == 0 {
		write("Nothing can be fixed automatically.\n")
	} else {
		write(fmt.Sprintf("🔧 **%d proposed fixes**\n", len(plan.Actions)))
		for i, action := range plan.Actions {
			reversal := "reversible: " + action.ReversalNote
			if !action.Reversible {
				reversal = "not reversible: " + action.ReversalNote
			}
			line := fmt.Sprintf("%d. %s [risk %s, %s]\n", i+1, action.Description, action.Risk, reversal)
			if !fits(line) {
				write(fmt.Sprintf("...and %d more fixes\n", len(plan.Actions)-i))
				break
			}
			write(line)
		}
	}

	if len(plan.ManualActions) > 0 {
		header := "\n⚠️ **Manual action required**\n"
		if !fits(header) {
			write(fmt.Sprintf("...and %d more manual actions\n", len(plan.ManualActions)))
			return b.String()
		}
		write(header)
		for i, manual := range plan.ManualActions {
			line := fmt.Sprintf("• %s: %s\n", describeManual(manual), manual.Reason)
			if !fits(line) {
				write(fmt.Sprintf("...and %d more manual actions\n", len(plan.ManualActions)-i))
				break
			}
			write(line)
		}
	}
	return b.String()
}

// FormatBatch renders counts plus a bounded list of user-safe failure reasons
func FormatBatch(batch models.BatchResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ %d fixes applied, ❌ %d failed", batch.SuccessCount, batch.ErrorCount)
	for _, reason := range batch.FailureReasons() {
		fmt.Fprintf(&b, "\n• %s", reason)
	}
	if hidden := batch.ErrorCount - len(batch.FailureReasons()); hidden > 0 {
		fmt.Fprintf(&b, "\n• ...and %d more", hidden)
	}
	return b.String()
}

// FormatCheckResult is the summary posted by monitoring cycles
func FormatCheckResult(result *models.CheckResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📋 Mention permission check (%s)\n", result.Trigger)
	b.WriteString(FormatDiagnosis(result.Diagnosis))
	if result.Fixes != nil {
		b.WriteString("\n\n")
		b.WriteString(FormatBatch(*result.Fixes))
	}
	return utils.Truncate(b.String(), MaxMessageLength)
}

// FormatOperation renders a confirmation operation for its current state
func FormatOperation(op models.GateOperation) string {
	switch op.State {
	case models.GateStateAwaitingInitialConfirm:
		footer := fmt.Sprintf("\nConfirm before <t:%d:T> to continue.", op.ExpiresAt.Unix())
		return formatPlan(op.Plan, MaxMessageLength-utf8.RuneCountInString(footer)) + footer
	case models.GateStateAwaitingFinalConfirm:
		header := "⚠️ **Final confirmation** - these changes will be applied now:\n"
		footer := fmt.Sprintf("\nConfirm again before <t:%d:T>.", op.ExpiresAt.Unix())
		limit := MaxMessageLength - utf8.RuneCountInString(header) - utf8.RuneCountInString(footer)
		return header + formatPlan(op.Plan, limit) + footer
	case models.GateStateApplied:
		if op.Result == nil {
			return "Fixes applied."
		}
		return FormatBatch(*op.Result)
	case models.GateStateCancelled:
		return "❌ Cancelled, no changes were made."
	case models.GateStateExpired:
		return "⌛ Confirmation expired, no changes were made."
	default:
		return FormatPlan(op.Plan)
	}
}

func describeTarget(target models.IssueTarget) string {
	switch {
	case target.RoleName != "" && target.ChannelName != "":
		return fmt.Sprintf("@%s in #%s", target.RoleName, target.ChannelName)
	case target.ChannelName != "":
		return "#" + target.ChannelName
	default:
		return "@" + target.RoleName
	}
}

func describeManual(manual models.ManualAction) string {
	switch {
	case manual.RoleName != "" && manual.ChannelName != "":
		return fmt.Sprintf("@%s in #%s", manual.RoleName, manual.ChannelName)
	case manual.ChannelName != "":
		return "#" + manual.ChannelName
	case manual.RoleName != "":
		return "@" + manual.RoleName
	default:
		return string(manual.IssueType)
	}
}
