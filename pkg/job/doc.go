/*
Package job derives job-level status and progress from member tasks.

A job is a named group of tasks with dependency edges. Sequential and
conditional edges materialize as task dependencies at submission time;
parallel edges carry no ordering. Status is recomputed reactively whenever
a member task changes state: a job completes only when every member
completes, fails early once the member failure ratio exceeds its threshold,
and fails late when all members are terminal but not all completed.
Terminal job states are final, and progress is monotonic for jobs whose
tasks are never re-run.
*/
package job
