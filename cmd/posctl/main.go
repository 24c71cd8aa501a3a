// posctl is the operator CLI: schema migrations, ledger audits and one-off
// runs of the background jobs.
package main

func main() {
	Execute()
}
