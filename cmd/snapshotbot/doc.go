/*
Snapshotbot watches a subreddit's new submissions and replies to each one
with archive.today snapshots of its links.

Usage:

	snapshotbot [-config path/to/config.yaml]

Configuration is read from the optional file, a .env file in the working
directory and SNAPSHOTBOT_* environment variables. DATABASE_URL, USER_NAME
and PASSWORD are honoured for the ledger DSN and the Reddit account.
*/
package main
