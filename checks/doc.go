/*
Package checks contains the leaf checks of the DANS BagIt profile.

Every constructor returns a dansbag.Check.  Checks decide only about the one thing
they are about, and assume their rule's prerequisites hold: the check for the format
of the Created date, for example, does not complain about a missing bag-info.txt, since
its rule is never run unless the rule requiring bag-info.txt was satisfied.  When an
optional element is simply absent, checks report the rule as not applicable, so that
rules depending on it are skipped.

Checks only read the bag, through its document cache.
*/
package checks
