package service

import (
	"context"
	"time"

	"watchdog/pkg/metrics"
	"watchdog/pkg/otel"
)

const (
	opCreateProject = "project.create"
	opUpdateStatus  = "project.update_status"
	opUpdateDetails = "project.update_details"
	opDeleteProject = "project.delete"
	opAddMember     = "project.add_member"
	opRemoveMember  = "project.remove_member"
	opCreateTask    = "task.create"
	opUpdateTask    = "task.update"
	opRollUp        = "task.rollup"
	opDeleteTask    = "task.delete"
	opCreateSubtask = "subtask.create"
	opUpdateSubtask = "subtask.update"
	opDeleteSubtask = "subtask.delete"
	opAppend        = "timeline.append"
	opPost          = "timeline.post"
	opReply         = "timeline.reply"
	opReclassify    = "timeline.reclassify"
	opProgression   = "progression.append"
	opRegister      = "user.register"
	opBootstrap     = "user.bootstrap"
	opAuthenticate  = "user.authenticate"
	opRead          = "read"
)

// track 为一次生命周期操作开启 span 并在结束时记录指标。
// 用法：ctx, done := track(ctx, op); defer func() { done(err) }()
func track(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := otel.StartSpan(ctx, op)
	return ctx, func(err error) {
		metrics.RecordLifecycleOperation(op, Outcome(err), time.Since(start))
		otel.EndSpan(span, err)
	}
}
