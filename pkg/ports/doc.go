/*
Package ports defines the interfaces between the parley engine and the outside world.

These interfaces decouple the orchestration core from handler hosting,
storage backends and transports.

# Key Interfaces

  - Handler / HandlerProvider: pluggable domain logic and the mechanism that hosts it.
  - StateCache: client and roaming conversation stacks.
  - ProfileStore: local, global and entity-history user profiles.
  - Cache: keyed items with per-item expiry (dialog actions, web data).
  - DistributedLocker: serializes one user's turns across replicas.
  - TurnProcessor: what transports call to run a turn.
*/
package ports
