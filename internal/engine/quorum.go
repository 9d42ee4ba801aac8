package engine

// approvalRequired returns the approval quorum for a home with the given
// member count. A single member approves their own chore alone; otherwise a
// majority is required, with a floor of two votes.
func approvalRequired(totalMembers int) int {
	if totalMembers <= 1 {
		return 1
	}
	required := (totalMembers + 1) / 2 // ceil(n * 0.5)
	if required < 2 {
		required = 2
	}
	return required
}

// disputeRequired returns the dispute quorum over the eligible voter count
// (home members minus the accused assignee). Unlike approval there is no
// floor of two: a dispute resolves on a bare majority of those eligible.
func disputeRequired(eligible int) int {
	if eligible <= 1 {
		return 1
	}
	return (eligible + 1) / 2 // ceil(n * 0.5)
}
