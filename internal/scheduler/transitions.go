package scheduler

import (
	"github.com/spacesaver/coordinator/internal/model"
	"github.com/spacesaver/coordinator/internal/xerrors"
)

// ItemEvent is an event fired against an Item's lifecycle machine.
type ItemEvent string

const (
	ItemEventEnqueue ItemEvent = "enqueue"
	ItemEventClaim   ItemEvent = "claim"
	ItemEventSucceed ItemEvent = "succeed"
	ItemEventFail    ItemEvent = "fail"
	ItemEventRequeue ItemEvent = "requeue"
	ItemEventReset   ItemEvent = "reset"
)

// itemTransitions encodes Item: idle -> queued -> processing -> {done, failed} -> idle/queued,
// per spec §3.
var itemTransitions = []Transition[model.ItemStatus, ItemEvent]{
	{From: model.ItemIdle, Event: ItemEventEnqueue, To: model.ItemQueued},
	{From: model.ItemQueued, Event: ItemEventClaim, To: model.ItemProcessing},
	{From: model.ItemProcessing, Event: ItemEventSucceed, To: model.ItemDone},
	{From: model.ItemProcessing, Event: ItemEventFail, To: model.ItemFailed},
	{From: model.ItemDone, Event: ItemEventReset, To: model.ItemIdle},
	{From: model.ItemFailed, Event: ItemEventReset, To: model.ItemIdle},
	{From: model.ItemDone, Event: ItemEventRequeue, To: model.ItemQueued},
	{From: model.ItemFailed, Event: ItemEventRequeue, To: model.ItemQueued},
	{From: model.ItemQueued, Event: ItemEventReset, To: model.ItemIdle},
}

// TransitionItem validates and applies event against it.Status, mutating it in place.
func TransitionItem(it *model.Item, event ItemEvent) error {
	m, err := New(it.Status, itemTransitions)
	if err != nil {
		return xerrors.Wrap(xerrors.KindStoreCorrupt, "build item fsm", err)
	}
	if err := m.Fire(event); err != nil {
		return xerrors.Wrap(xerrors.KindConflict, "item transition", err)
	}
	it.Status = m.State()
	return nil
}

// JobEvent is an event fired against a Job's lifecycle machine.
type JobEvent string

const (
	JobEventStart    JobEvent = "start"
	JobEventComplete JobEvent = "complete"
	JobEventFail     JobEvent = "fail"
)

// jobTransitions encodes Job: claimed -> running -> {done, failed}, per spec §3. cancelRequested
// is an orthogonal monotonic flag, not part of this machine.
var jobTransitions = []Transition[model.JobStatus, JobEvent]{
	{From: model.JobClaimed, Event: JobEventStart, To: model.JobRunning},
	{From: model.JobClaimed, Event: JobEventFail, To: model.JobFailed},
	{From: model.JobRunning, Event: JobEventComplete, To: model.JobDone},
	{From: model.JobRunning, Event: JobEventFail, To: model.JobFailed},
}

// TransitionJob validates and applies event against j.Status, mutating it in place.
func TransitionJob(j *model.Job, event JobEvent) error {
	m, err := New(j.Status, jobTransitions)
	if err != nil {
		return xerrors.Wrap(xerrors.KindStoreCorrupt, "build job fsm", err)
	}
	if err := m.Fire(event); err != nil {
		return xerrors.Wrap(xerrors.KindConflict, "job transition", err)
	}
	j.Status = m.State()
	return nil
}
