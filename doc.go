/*Package drover trains gradient-boosted tree models on a single node with
multiple accelerator devices.

A Driver wires the whole pipeline: it discovers the host's scheduler
endpoint, forms a local cluster with one worker per device, reads tabular
training data (delimited text or columnar) from local disk or a cloud
object store into a partitioned table, quantizes it into a training
matrix, runs the configured boosting rounds, and persists the resulting
model locally and to the configured remote destination.

Drover contains no novel training algorithm; it packages a histogram
gradient-boosting implementation behind the same kind of thin, sequential
orchestration found in common GPU training scripts. The cluster and client
are scoped to a single run and are always torn down when the run ends.
*/
package drover
