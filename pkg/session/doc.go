/*
Package session moves conversation state between a turn and its stores.

A turn starts with Manager.Retrieve and Reconcile, which load the stored
conversation stack and reattach each frame to the handler version that is
loaded now. While the turn runs, every write it wants to make is staged in a
Commit. Only a turn that completes hands its Commit to Manager.Commit, which
dispatches the writes in the background: failures are logged and never reach
the caller, and commits for one user are applied in dispatch order.
*/
package session
